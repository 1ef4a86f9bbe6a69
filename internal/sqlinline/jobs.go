package sqlinline

const QInsertJob = `--sql 9e60d6bf-a156-4ba1-9108-94771464f751
insert into generation_jobs (id, owner_id, kind, payload, status, credits_reserved, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::jsonb, $5::text, $6::bigint, now(), now())
returning created_at, updated_at;
`

// QUpdateJob applies a partial patch. $7 carries the statuses allowed to
// precede $2, so a backwards move matches no row.
const QUpdateJob = `--sql 3722c117-70ee-4c87-8b4c-9d6637ed31ca
update generation_jobs
set status           = coalesce($2::text, status),
    credits_reserved = coalesce($3::bigint, credits_reserved),
    output_url       = coalesce($4::text, output_url),
    result_text      = coalesce($5::text, result_text),
    error_message    = coalesce($6::text, error_message),
    updated_at       = now()
where id = $1::uuid
  and ($2::text is null or status = $2::text or status = any($7::text[]));
`

const QSelectJobByID = `--sql 02d4c4bd-776e-4eeb-9547-e5e6b20045c7
select id::text, owner_id, kind, payload, status, credits_reserved, output_url, result_text, error_message, created_at, updated_at
from generation_jobs
where id = $1::uuid;
`

const QSelectJobStatus = `--sql 867235bd-ed80-4125-8ca6-5bfebefba213
select status
from generation_jobs
where id = $1::uuid;
`
