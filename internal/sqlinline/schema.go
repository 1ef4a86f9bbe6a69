package sqlinline

const QEnsureSchema = `--sql 5ba8126c-7e2c-41ed-84ea-8ee5a3c4eab1
create table if not exists generation_jobs (
    id               uuid primary key,
    owner_id         text not null,
    kind             text not null,
    payload          jsonb not null default '{}'::jsonb,
    status           text not null,
    credits_reserved bigint not null default 0,
    output_url       text,
    result_text      text,
    error_message    text,
    created_at       timestamptz not null default now(),
    updated_at       timestamptz not null default now()
);
create index if not exists generation_jobs_owner_idx on generation_jobs (owner_id, created_at desc);
create table if not exists credit_accounts (
    owner_id   text primary key,
    balance    bigint not null check (balance >= 0),
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create table if not exists credit_entries (
    id         uuid primary key,
    owner_id   text not null,
    kind       text not null,
    amount     bigint not null,
    created_at timestamptz not null default now()
);
create index if not exists credit_entries_owner_idx on credit_entries (owner_id, created_at desc);
create table if not exists integration_tokens (
    id         uuid primary key,
    provider   text not null unique,
    token      text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
