package sqlinline

// QReserveCredits debits only when the balance covers the amount. Zero rows
// affected means insufficient credits or no account.
const QReserveCredits = `--sql 69e50aa9-3cd8-4ead-be41-3da6ecb9b53a
update credit_accounts
set balance = balance - $2::bigint,
    updated_at = now()
where owner_id = $1::text
  and balance >= $2::bigint;
`

const QAddCredits = `--sql 9ba4f8b7-b7ec-4259-905f-cdac2ebb844c
insert into credit_accounts (owner_id, balance, created_at, updated_at)
values ($1::text, $2::bigint, now(), now())
on conflict (owner_id) do update set
    balance = credit_accounts.balance + excluded.balance,
    updated_at = now();
`

const QInsertCreditEntry = `--sql 6dafb143-6d3c-4151-ad4c-a7e79af736c8
insert into credit_entries (id, owner_id, kind, amount, created_at)
values (gen_random_uuid(), $1::text, $2::text, $3::bigint, now());
`

const QSelectCreditBalance = `--sql 9b3be44e-d835-4299-b0d5-cd6f0127e37c
select balance
from credit_accounts
where owner_id = $1::text;
`
