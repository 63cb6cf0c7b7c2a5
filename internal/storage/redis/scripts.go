package redis

const (
	// saveIdentifierScript adds an identifier to the ordered index and writes
	// its record, unless it is already present.
	saveIdentifierScript = `
local index_key = KEYS[1]   -- cortes:identifiers
local record_key = KEYS[2]  -- cortes:identifier:{id}

local id = ARGV[1]
local criterion = ARGV[2]
local saved_at = ARGV[3]
local score = tonumber(ARGV[4])

if redis.call('ZSCORE', index_key, id) then
  return 0
end

redis.call('ZADD', index_key, score, id)
redis.call('HSET', record_key,
  'id', id,
  'criterion', criterion,
  'saved_at', saved_at,
  'refreshed_at', '',
  'windows', 0
)

return 1
`

	// deleteIdentifierScript removes an identifier and its record.
	deleteIdentifierScript = `
local index_key = KEYS[1]   -- cortes:identifiers
local record_key = KEYS[2]  -- cortes:identifier:{id}

local removed = redis.call('ZREM', index_key, ARGV[1])
redis.call('DEL', record_key)

return removed
`

	// clearIdentifiersScript removes every identifier and record.
	clearIdentifiersScript = `
local index_key = KEYS[1]   -- cortes:identifiers
local prefix = ARGV[1]      -- cortes:identifier:

local ids = redis.call('ZRANGE', index_key, 0, -1)
for _, id in ipairs(ids) do
  redis.call('DEL', prefix .. id)
end
redis.call('DEL', index_key)

return #ids
`

	// markIdentifierRefreshedScript updates refresh bookkeeping of an existing record.
	markIdentifierRefreshedScript = `
local index_key = KEYS[1]   -- cortes:identifiers
local record_key = KEYS[2]  -- cortes:identifier:{id}

if not redis.call('ZSCORE', index_key, ARGV[1]) then
  return 0
end

redis.call('HSET', record_key, 'refreshed_at', ARGV[2], 'windows', ARGV[3])

return 1
`
)
