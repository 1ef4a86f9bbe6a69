package sqlinline

const QSelectIntegrationToken = `--sql 86d330d5-aa3d-44cf-a962-cd66acb2cd7f
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 068bfa68-44bc-4518-9dd9-fdabd2ae0628
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
