package storage

// Schema is applied at startup. Accounts and positions are snapshots of the
// in-memory ledger; trades are the append-only audit log.
const Schema = `
create table if not exists accounts (
    user_id      text primary key,
    cash_balance numeric(18,2) not null default 0,
    updated_at   timestamptz not null default now()
);

create table if not exists positions (
    user_id      text not null,
    symbol       text not null,
    quantity     bigint not null,
    average_cost numeric(18,2) not null,
    updated_at   timestamptz not null,
    primary key (user_id, symbol)
);

create table if not exists trades (
    id               text primary key,
    user_id          text not null,
    symbol           text not null,
    side             text not null,
    quantity         bigint not null,
    fill_price       numeric(18,2) not null,
    total_amount     numeric(18,2) not null,
    order_type       text not null,
    status           text not null,
    rejection_reason text not null default '',
    created_at       timestamptz not null
);

create index if not exists trades_user_created_idx on trades (user_id, created_at desc);
`
