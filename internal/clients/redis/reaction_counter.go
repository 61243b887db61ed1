package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

// Keys share a hash tag so the scripts touch a single cluster slot.
func likesKey(id uuid.UUID) string    { return "incident:{" + id.String() + "}:likes" }
func dislikesKey(id uuid.UUID) string { return "incident:{" + id.String() + "}:dislikes" }
func metaKey(id uuid.UUID) string     { return "incident:{" + id.String() + "}:reactions:meta" }

// ErrCold means the sets are missing or no longer match the sizes recorded with them,
// for example after eviction. They must be rebuilt from the mirror before use.
var ErrCold = errors.New("reaction sets are not loaded")

// warmCheck is shared by every script. The meta hash records seq and both set sizes;
// the sets count as loaded only while the sizes still agree.
const warmCheck = `
local function warm()
	local m = redis.call("HMGET", KEYS[3], "seq", "likes", "dislikes")
	if not m[1] then
		return false
	end
	return tonumber(m[2] or "") == redis.call("SCARD", KEYS[1])
		and tonumber(m[3] or "") == redis.call("SCARD", KEYS[2])
end
`

// reactionScript moves the actor between the two sets and reports counts, the actor's
// membership and the incident's reaction sequence. Every mutation bumps the sequence.
// Removing a membership that is not held is a no-op. Status 0 means cold.
var reactionScript = goredis.NewScript(warmCheck + `
local likeKey = KEYS[1]
local dislikeKey = KEYS[2]
local actor = ARGV[1]
local action = ARGV[2]

if action ~= "ADD_LIKE" and action ~= "ADD_DISLIKE" and action ~= "REMOVE_LIKE"
	and action ~= "REMOVE_DISLIKE" and action ~= "CLEAR" and action ~= "REFRESH" then
	return redis.error_reply("unknown reaction action " .. action)
end
if not warm() then
	return {0, 0, 0, 0, 0}
end

if action == "ADD_LIKE" then
	redis.call("SREM", dislikeKey, actor)
	redis.call("SADD", likeKey, actor)
elseif action == "ADD_DISLIKE" then
	redis.call("SREM", likeKey, actor)
	redis.call("SADD", dislikeKey, actor)
elseif action == "REMOVE_LIKE" then
	redis.call("SREM", likeKey, actor)
elseif action == "REMOVE_DISLIKE" then
	redis.call("SREM", dislikeKey, actor)
elseif action == "CLEAR" then
	redis.call("SREM", likeKey, actor)
	redis.call("SREM", dislikeKey, actor)
end

local flag = 0
if actor ~= "" then
	if redis.call("SISMEMBER", likeKey, actor) == 1 then
		flag = 1
	elseif redis.call("SISMEMBER", dislikeKey, actor) == 1 then
		flag = -1
	end
end

local likes = redis.call("SCARD", likeKey)
local dislikes = redis.call("SCARD", dislikeKey)
local seq
if action == "REFRESH" then
	seq = tonumber(redis.call("HGET", KEYS[3], "seq"))
else
	seq = redis.call("HINCRBY", KEYS[3], "seq", 1)
	redis.call("HSET", KEYS[3], "likes", likes, "dislikes", dislikes)
end
return {1, likes, dislikes, flag, seq}
`)

// rebuildScript replaces the sets with mirrored members unless they are already loaded.
// ARGV[1] is the highest mirrored seq and ARGV[2] the number of likers; likers follow,
// then dislikers. The sequence never moves backwards.
var rebuildScript = goredis.NewScript(warmCheck + `
if warm() then
	return 0
end
local seq = tonumber(ARGV[1])
local prev = tonumber(redis.call("HGET", KEYS[3], "seq") or "")
if prev and prev > seq then
	seq = prev
end
redis.call("DEL", KEYS[1], KEYS[2])
local n = tonumber(ARGV[2])
for i = 3, n + 2 do
	redis.call("SADD", KEYS[1], ARGV[i])
end
for i = n + 3, #ARGV do
	redis.call("SADD", KEYS[2], ARGV[i])
end
redis.call("HSET", KEYS[3], "seq", seq, "likes", redis.call("SCARD", KEYS[1]), "dislikes", redis.call("SCARD", KEYS[2]))
return 1
`)

var warmScript = goredis.NewScript(warmCheck + `
if warm() then
	return 1
end
return 0
`)

type CounterResult struct {
	Likes    int64
	Dislikes int64
	Flag     int64
	// Seq orders mutations of one incident; REFRESH reports the current value.
	Seq int64
}

// ReactionCounter keeps the per-incident liker/disliker sets.
type ReactionCounter interface {
	// Apply returns ErrCold when the sets have to be rebuilt first.
	Apply(ctx context.Context, incidentID uuid.UUID, actorID string, action incidents.ReactionAction) (CounterResult, error)
	// Warm reports whether the sets are loaded and intact.
	Warm(ctx context.Context, incidentID uuid.UUID) (bool, error)
	// Rebuild loads mirrored memberships; it returns false when the sets were already warm.
	Rebuild(ctx context.Context, incidentID uuid.UUID, seq int64, likers, dislikers []string) (bool, error)
	Drop(ctx context.Context, incidentID uuid.UUID) error
}

type reactionCounter struct {
	log *logger.Logger
	rdb goredis.Cmdable
}

func NewReactionCounter(log *logger.Logger, rdb goredis.Cmdable) ReactionCounter {
	return &reactionCounter{log: log.With("component", "ReactionCounter"), rdb: rdb}
}

func reactionKeys(id uuid.UUID) []string {
	return []string{likesKey(id), dislikesKey(id), metaKey(id)}
}

func (c *reactionCounter) Apply(ctx context.Context, incidentID uuid.UUID, actorID string, action incidents.ReactionAction) (CounterResult, error) {
	if !action.Valid() {
		return CounterResult{}, fmt.Errorf("unknown reaction action %q", action)
	}
	raw, err := reactionScript.Run(ctx, c.rdb, reactionKeys(incidentID), actorID, string(action)).Int64Slice()
	if err != nil {
		return CounterResult{}, fmt.Errorf("reaction script %s: %w", action, err)
	}
	if len(raw) != 5 {
		return CounterResult{}, fmt.Errorf("reaction script %s: unexpected reply length %d", action, len(raw))
	}
	if raw[0] == 0 {
		return CounterResult{}, ErrCold
	}
	return CounterResult{Likes: raw[1], Dislikes: raw[2], Flag: raw[3], Seq: raw[4]}, nil
}

func (c *reactionCounter) Warm(ctx context.Context, incidentID uuid.UUID) (bool, error) {
	n, err := warmScript.Run(ctx, c.rdb, reactionKeys(incidentID)).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *reactionCounter) Rebuild(ctx context.Context, incidentID uuid.UUID, seq int64, likers, dislikers []string) (bool, error) {
	args := make([]any, 0, 2+len(likers)+len(dislikers))
	args = append(args, seq, len(likers))
	for _, a := range likers {
		args = append(args, a)
	}
	for _, a := range dislikers {
		args = append(args, a)
	}
	loaded, err := rebuildScript.Run(ctx, c.rdb, reactionKeys(incidentID), args...).Int64()
	if err != nil {
		return false, fmt.Errorf("reaction rebuild: %w", err)
	}
	if loaded == 1 {
		c.log.Debug("reaction sets rebuilt", "incident_id", incidentID, "seq", seq, "likes", len(likers), "dislikes", len(dislikers))
	}
	return loaded == 1, nil
}

func (c *reactionCounter) Drop(ctx context.Context, incidentID uuid.UUID) error {
	return c.rdb.Del(ctx, reactionKeys(incidentID)...).Err()
}
