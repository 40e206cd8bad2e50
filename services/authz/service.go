package authz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"drip-controlplane/pkg/config"
	"drip-controlplane/pkg/dns"
	"drip-controlplane/pkg/errutil"
	"drip-controlplane/pkg/rediskey"
	"drip-controlplane/pkg/util"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// challengeTTL bounds how long a DNS verification code stays redeemable.
const challengeTTL = 15 * time.Minute

// RootDomain returns the two-label root of a source identifier: the last two
// dot-separated labels. Identifiers with fewer than two labels are their own
// root.
func RootDomain(id string) string {
	labels := strings.Split(id, ".")
	if len(labels) < 2 {
		return id
	}
	return labels[len(labels)-2] + "." + labels[len(labels)-1]
}

// Service is the authorization oracle: a source is trusted iff its root
// domain matches this deployment's own root, or the owner has put it on the
// allow-list. The decision is recomputed per call from the current
// allow-list snapshot; it filters, it never aborts a request.
type Service struct {
	db      *gorm.DB
	redis   *redis.Client
	cfg     *config.Config
	ownRoot string

	mu        sync.RWMutex
	allowList map[string]struct{}
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Redis  *redis.Client `optional:"true"`
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:        p.DB,
		redis:     p.Redis,
		cfg:       p.Config,
		ownRoot:   RootDomain(p.Config.Drip.OwnAccount),
		allowList: make(map[string]struct{}),
	}

	s.loadAllowList()

	return s
}

func (s *Service) loadAllowList() {
	if s.db == nil {
		return
	}

	var entries []AllowedSource
	if err := s.db.Find(&entries).Error; err != nil {
		zap.L().Error("failed to load allow-list", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.allowList[e.SourceID] = struct{}{}
	}
}

// IsTrusted decides whether a source may contribute drips.
func (s *Service) IsTrusted(source string) bool {
	if RootDomain(source) == s.ownRoot {
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowList[source]
	return ok
}

// Filter keeps the trusted subset of candidates, preserving request order.
// Untrusted entries are dropped silently; partial lists are normal.
func (s *Service) Filter(candidates []string) []string {
	trusted := make([]string, 0, len(candidates))
	for _, source := range candidates {
		if s.IsTrusted(source) {
			trusted = append(trusted, source)
		}
	}
	return trusted
}

// Challenge issues a verification code for a pending allow-list add. Owner
// only. The source operator publishes the code as a TXT record before Add
// is retried.
func (s *Service) Challenge(ctx context.Context, caller, source string) (string, error) {
	if err := s.requireOwner(caller); err != nil {
		return "", err
	}

	code := util.GenerateVerificationCode()
	if s.redis != nil {
		key := rediskey.BuildAllowListChallengeKey(source)
		if err := s.redis.Set(ctx, key, code, challengeTTL).Err(); err != nil {
			return "", errutil.Internal("failed to store verification challenge", errutil.WithErr(err))
		}
	}

	return code, nil
}

// Add puts a source on the allow-list. Owner only. When DNS verification is
// enabled, a source outside the own root must publish the challenge code as
// a TXT record first; an explicit code overrides the stored challenge.
func (s *Service) Add(ctx context.Context, caller, source, verificationCode string) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}

	if s.cfg.Drip.VerifyAllowListDNS && RootDomain(source) != s.ownRoot {
		code := verificationCode
		if code == "" && s.redis != nil {
			stored, err := s.redis.Get(ctx, rediskey.BuildAllowListChallengeKey(source)).Result()
			if err != nil {
				return errutil.Unauthorized(fmt.Sprintf("no pending verification challenge for source %s", source), errutil.WithErr(err))
			}
			code = stored
		}
		if err := dns.VerifyTXTRecord(source, code); err != nil {
			return errutil.Unauthorized(fmt.Sprintf("source %s failed DNS verification", source), errutil.WithErr(err))
		}
	}

	if s.db != nil {
		entry := &AllowedSource{SourceID: source, AddedBy: caller, CreatedAt: time.Now()}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error; err != nil {
			zap.L().Error("failed to persist allow-list entry", zap.String("source_id", source), zap.Error(err))
			return errutil.Internal("failed to persist allow-list entry", errutil.WithErr(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowList[source] = struct{}{}
	return nil
}

// Remove deletes a source from the allow-list. Owner only.
func (s *Service) Remove(ctx context.Context, caller, source string) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}

	if s.db != nil {
		if err := s.db.WithContext(ctx).Delete(&AllowedSource{SourceID: source}).Error; err != nil {
			zap.L().Error("failed to delete allow-list entry", zap.String("source_id", source), zap.Error(err))
			return errutil.Internal("failed to delete allow-list entry", errutil.WithErr(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.allowList, source)
	return nil
}

// AllowList returns a snapshot of the allow-listed sources.
func (s *Service) AllowList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.allowList))
	for source := range s.allowList {
		out = append(out, source)
	}
	return out
}

func (s *Service) requireOwner(caller string) error {
	if caller != s.cfg.Drip.OwnerAccount {
		return errutil.Unauthorized("only the owner may mutate the allow-list")
	}
	return nil
}
