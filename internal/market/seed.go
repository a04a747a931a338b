package market

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Seed describes one catalog entry. Volatility ranks 1 (calm) to 10 (wild)
// and scales the simulator's walk amplitude.
type Seed struct {
	Symbol     string          `yaml:"symbol"`
	Name       string          `yaml:"name"`
	Company    string          `yaml:"company"`
	Industry   string          `yaml:"industry"`
	Price      decimal.Decimal `yaml:"price"`
	Volatility int             `yaml:"volatility"`
	Shares     int64           `yaml:"shares"`
}

type catalogFile struct {
	Instruments []Seed `yaml:"instruments"`
}

const defaultShares = 10_000_000

// LoadCatalog reads a YAML seed file, falling back to the built-in catalog
// when path is empty.
func LoadCatalog(path string) ([]Seed, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("seed file %s lists no instruments", path)
	}
	for i := range f.Instruments {
		s := &f.Instruments[i]
		if s.Symbol == "" {
			return nil, fmt.Errorf("seed entry %d has no symbol", i)
		}
		if !s.Price.IsPositive() {
			return nil, fmt.Errorf("seed %s: price must be positive", s.Symbol)
		}
		if s.Volatility < 1 || s.Volatility > 10 {
			return nil, fmt.Errorf("seed %s: volatility must be 1..10", s.Symbol)
		}
		if s.Shares <= 0 {
			s.Shares = defaultShares
		}
	}
	return f.Instruments, nil
}

// DefaultCatalog is the stock list the simulator ships with.
func DefaultCatalog() []Seed {
	mk := func(symbol, name, company, industry string, price float64, vol int) Seed {
		return Seed{
			Symbol:     symbol,
			Name:       name,
			Company:    company,
			Industry:   industry,
			Price:      decimal.NewFromFloat(price),
			Volatility: vol,
			Shares:     defaultShares,
		}
	}
	return []Seed{
		mk("000001", "Ping An Bank", "Ping An Bank Co., Ltd.", "Finance", 15.50, 5),
		mk("000002", "Vanke A", "China Vanke Co., Ltd.", "Real Estate", 25.80, 7),
		mk("000858", "Wuliangye", "Wuliangye Yibin Co., Ltd.", "Consumer", 160.45, 6),
		mk("600036", "CM Bank", "China Merchants Bank Co., Ltd.", "Finance", 35.20, 4),
		mk("600519", "Kweichow Moutai", "Kweichow Moutai Co., Ltd.", "Consumer", 1800.00, 3),
		mk("601318", "Ping An", "Ping An Insurance (Group) Co., Ltd.", "Finance", 48.60, 5),
		mk("601888", "China Duty Free", "China Tourism Group Duty Free Corp.", "Consumer", 95.30, 8),
		mk("603259", "WuXi AppTec", "WuXi AppTec Co., Ltd.", "Pharma", 75.80, 9),
		mk("300750", "CATL", "Contemporary Amperex Technology Co., Ltd.", "New Energy", 210.50, 10),
		mk("688981", "SMIC", "Semiconductor Manufacturing International Corp.", "Tech", 45.60, 8),
	}
}
