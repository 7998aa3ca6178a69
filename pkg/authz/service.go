package authz

import (
	"context"
	"sync"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"
)

// Config locates the casbin model and policy files.
type Config struct {
	ModelPath  string
	PolicyPath string
	Logger     *logrus.Logger
}

func (c Config) validate() error {
	if c.ModelPath == "" {
		return configError("model path is required")
	}
	if c.PolicyPath == "" {
		return configError("policy path is required")
	}
	return nil
}

// Service evaluates authorization requests against casbin policies.
type Service struct {
	enforcer *casbin.Enforcer
	logger   *logrus.Entry
	mu       sync.RWMutex
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	enf, err := casbin.NewEnforcer(cfg.ModelPath, fileadapter.NewAdapter(cfg.PolicyPath))
	if err != nil {
		return nil, configError("failed to initialize enforcer: %v", err)
	}
	if err := enf.LoadPolicy(); err != nil {
		return nil, configError("failed to load policies: %v", err)
	}

	return &Service{
		enforcer: enf,
		logger:   logger,
	}, nil
}

// Check evaluates the request and reports the decision without side effects.
func (s *Service) Check(_ context.Context, req Request) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enforcer.Enforce(req.Subject, req.Domain, req.Object, req.Action)
}

// Authorize returns ErrForbidden if the request is denied. Denials are logged
// at warning level with subject, object and action.
func (s *Service) Authorize(ctx context.Context, req Request) error {
	allowed, err := s.Check(ctx, req)
	if err != nil {
		return err
	}
	if !allowed {
		s.logger.WithContext(ctx).WithFields(logrus.Fields{
			"subject": req.Subject,
			"domain":  req.Domain,
			"object":  req.Object,
			"action":  req.Action,
		}).Warn("authz deny")
		return forbiddenError(req)
	}
	return nil
}

// Reload re-reads policies from disk.
func (s *Service) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enforcer.LoadPolicy()
}
