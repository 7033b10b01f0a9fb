package broker

import "github.com/redis/go-redis/v9"

// Shared tail of the add scripts: stores the hash and queues the id.
const enqueueJob = `
redis.call("HSET", KEYS[1], "id", ARGV[1], "data", ARGV[2], "timestamp", ARGV[3], "attemptsMade", "0")
if tonumber(ARGV[4]) > 0 then
  redis.call("ZADD", KEYS[4], ARGV[5], ARGV[1])
  redis.call("HSET", KEYS[1], "state", "delayed", "delay", ARGV[4])
elseif redis.call("HEXISTS", KEYS[5], "paused") == 1 then
  redis.call("LPUSH", KEYS[3], ARGV[1])
  redis.call("HSET", KEYS[1], "state", "paused")
else
  redis.call("LPUSH", KEYS[2], ARGV[1])
  redis.call("HSET", KEYS[1], "state", "waiting")
end
return 1
`

// KEYS: job, wait, paused, delayed, meta
// ARGV: id, data, timestamp(ms), delay(ms), run-at(ms)
// Returns 0 when a job with this id is still known to the queue.
var addJobScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
` + enqueueJob)

// KEYS: job, wait, paused, delayed, meta, completed, failed
// ARGV: same as addJobScript
// A finished record under the id is dropped first; returns 0 when the job is
// still waiting, delayed, paused or active.
var retryJobScript = redis.NewScript(`
local state = redis.call("HGET", KEYS[1], "state")
if state then
  if state ~= "completed" and state ~= "failed" then
    return 0
  end
  redis.call("ZREM", KEYS[6], ARGV[1])
  redis.call("ZREM", KEYS[7], ARGV[1])
  redis.call("DEL", KEYS[1])
elseif redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
` + enqueueJob)

// KEYS: active, job
// ARGV: id, processedOn(ms)
// Returns the job hash as a flat list, or false when the hash is gone.
var moveToActiveScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 0 then
  redis.call("LREM", KEYS[1], -1, ARGV[1])
  return false
end
redis.call("HINCRBY", KEYS[2], "attemptsMade", 1)
redis.call("HSET", KEYS[2], "state", "active", "processedOn", ARGV[2])
return redis.call("HGETALL", KEYS[2])
`)

// KEYS: active, finished set, job
// ARGV: id, finishedOn(ms), keep, job key prefix, state, field, value
// Returns -1 when the job is not active.
var finishJobScript = redis.NewScript(`
if redis.call("LREM", KEYS[1], -1, ARGV[1]) == 0 then
  return -1
end
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
redis.call("HSET", KEYS[3], "state", ARGV[5], "finishedOn", ARGV[2], ARGV[6], ARGV[7])
local keep = tonumber(ARGV[3])
local excess = redis.call("ZCARD", KEYS[2]) - keep
if excess > 0 then
  local old = redis.call("ZRANGE", KEYS[2], 0, excess - 1)
  for _, jid in ipairs(old) do
    redis.call("DEL", ARGV[4] .. jid)
  end
  redis.call("ZREMRANGEBYRANK", KEYS[2], 0, excess - 1)
end
return 1
`)

// KEYS: delayed, wait, paused, meta
// ARGV: now(ms), job key prefix, limit
var promoteDelayedScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[3]))
local target = KEYS[2]
local state = "waiting"
if redis.call("HEXISTS", KEYS[4], "paused") == 1 then
  target = KEYS[3]
  state = "paused"
end
for _, jid in ipairs(due) do
  redis.call("ZREM", KEYS[1], jid)
  redis.call("LPUSH", target, jid)
  redis.call("HSET", ARGV[2] .. jid, "state", state)
end
return #due
`)

// KEYS: from, to, meta
// ARGV: pause ("1") or resume ("0"), job key prefix
var pauseScript = redis.NewScript(`
if ARGV[1] == "1" then
  redis.call("HSET", KEYS[3], "paused", "1")
else
  redis.call("HDEL", KEYS[3], "paused")
end
local state = "waiting"
if ARGV[1] == "1" then state = "paused" end
local moved = 0
while true do
  local jid = redis.call("RPOPLPUSH", KEYS[1], KEYS[2])
  if not jid then break end
  redis.call("HSET", ARGV[2] .. jid, "state", state)
  moved = moved + 1
end
return moved
`)
