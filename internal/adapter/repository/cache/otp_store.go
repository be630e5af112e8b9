package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/auth"
	"github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix         = "marketplace:otp:"
	otpAttemptsKeyPrefix = "marketplace:otp:attempts:"
)

// incrAttemptsScript bumps the attempt counter only while the code exists and
// gives the counter the code's remaining TTL on first use.
var incrAttemptsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local n = redis.call('INCR', KEYS[2])
if n == 1 then
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[2], ttl)
	end
end
return n
`)

// OTPStore keeps pending one-time codes in Redis with a per-entry expiry. The
// attempt counter lives in a sibling key so it can be bumped with INCR.
type OTPStore struct {
	client redis.Cmdable
}

func NewOTPStore(client redis.Cmdable) *OTPStore {
	return &OTPStore{client: client}
}

func (s *OTPStore) Save(ctx context.Context, email string, entry *auth.OTPEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Delete(ctx, email)
	}
	saved := *entry
	saved.Attempts = 0
	data, err := json.Marshal(&saved)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, otpKeyPrefix+email, data, ttl)
		pipe.Del(ctx, otpAttemptsKeyPrefix+email)
		return nil
	})
	return err
}

func (s *OTPStore) Load(ctx context.Context, email string) (*auth.OTPEntry, error) {
	vals, err := s.client.MGet(ctx, otpKeyPrefix+email, otpAttemptsKeyPrefix+email).Result()
	if err != nil {
		return nil, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, auth.ErrOTPNotFound
	}
	entry, err := decodeOTPEntry([]byte(raw))
	if err != nil {
		return nil, err
	}
	if n, ok := vals[1].(string); ok {
		entry.Attempts, _ = strconv.Atoi(n)
	}
	return entry, nil
}

func (s *OTPStore) IncrAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrAttemptsScript.Run(ctx, s.client, []string{otpKeyPrefix + email, otpAttemptsKeyPrefix + email}).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, auth.ErrOTPNotFound
	}
	return n, nil
}

// Take redeems the code with GETDEL so only one caller can observe it.
func (s *OTPStore) Take(ctx context.Context, email string) (*auth.OTPEntry, error) {
	data, err := s.client.GetDel(ctx, otpKeyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, auth.ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = s.client.Del(ctx, otpAttemptsKeyPrefix+email).Err()
	return decodeOTPEntry(data)
}

func (s *OTPStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, otpKeyPrefix+email, otpAttemptsKeyPrefix+email).Err()
}

func decodeOTPEntry(data []byte) (*auth.OTPEntry, error) {
	var entry auth.OTPEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
