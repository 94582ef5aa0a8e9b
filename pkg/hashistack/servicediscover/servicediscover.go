package servicediscover

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"careerloop-engine/pkg/config"

	"github.com/hashicorp/consul/api"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module registers the HTTP listener with the local consul agent when
// CONSUL.ADDR is set.
var Module = fx.Module("servicediscover",
	fx.Invoke(registerConsul),
)

type ServiceRegistry interface {
	Register(ctx context.Context) error
	Deregister(ctx context.Context) error
}

// Agent is the slice of the consul agent API the registry uses.
type Agent interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

type ConsulRegistry struct {
	agent     Agent
	serviceID string
	service   *api.AgentServiceRegistration
}

func NewConfig(cfg *config.Config) *api.Config {
	config := api.DefaultConfig()
	config.Address = cfg.Consul.Addr

	return config
}

// NewRegistration describes this instance with an HTTP readiness check.
func NewRegistration(cfg *config.Config) (*api.AgentServiceRegistration, error) {
	port, err := strconv.Atoi(cfg.Server.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid http port %q: %w", cfg.Server.Addr, err)
	}

	host := cfg.Server.Host
	if host == "" {
		host, _ = os.Hostname()
	}

	return &api.AgentServiceRegistration{
		ID:      fmt.Sprintf("%s-%s-%d", cfg.AppName, host, cfg.NodeID),
		Name:    cfg.AppName,
		Address: host,
		Port:    port,
		Tags:    []string{cfg.AppEnv, cfg.AppVersion},
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health/readiness", host, port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}, nil
}

func NewConsulRegistry(agent Agent, service *api.AgentServiceRegistration) *ConsulRegistry {
	return &ConsulRegistry{
		agent:     agent,
		serviceID: service.ID,
		service:   service,
	}
}

func (r *ConsulRegistry) Register(ctx context.Context) error {
	return r.agent.ServiceRegister(r.service)
}

func (r *ConsulRegistry) Deregister(ctx context.Context) error {
	return r.agent.ServiceDeregister(r.serviceID)
}

func registerConsul(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Consul.Addr == "" {
		return nil
	}

	client, err := api.NewClient(NewConfig(cfg))
	if err != nil {
		return err
	}

	service, err := NewRegistration(cfg)
	if err != nil {
		return err
	}

	var registry ServiceRegistry = NewConsulRegistry(client.Agent(), service)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("registering service with consul", zap.String("id", service.ID))
			return registry.Register(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return registry.Deregister(ctx)
		},
	})
	return nil
}
