package discovery

import (
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/consul/api"
)

// ConsulClient registers canteen-service with the local Consul agent and
// lets the gateway find a healthy canteen-service instance.
type ConsulClient struct {
	client *api.Client
}

// ServiceConfig describes one canteen-service instance. ID must be unique
// per instance so a restart replaces its own entry only.
type ServiceConfig struct {
	Name string
	ID   string
	// Address is advertised to Consul. Empty means the outbound IP of
	// this machine.
	Address    string
	Port       int
	Tags       []string
	HealthPath string // defaults to /health
}

func NewConsulClient(host string, port int) (*ConsulClient, error) {
	config := api.DefaultConfig()
	config.Address = fmt.Sprintf("%s:%d", host, port)

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}

	// Test connection
	_, err = client.Agent().Self()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Consul: %w", err)
	}

	log.Println("✅ Connected to Consul")

	return &ConsulClient{client: client}, nil
}

// getOutboundIP is the local address of the default route. No packet is
// sent; dialing UDP only selects the interface.
func getOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}

// Registration builds the agent registration for cfg. Consul polls the
// health path every 10s and drops the instance after 30s critical, so a
// crashed instance leaves the gateway's rotation without a deregister.
func Registration(cfg ServiceConfig) *api.AgentServiceRegistration {
	address := cfg.Address
	if address == "" {
		address = getOutboundIP()
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}

	return &api.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Port:    cfg.Port,
		Address: address,
		Tags:    cfg.Tags,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", address, cfg.Port, healthPath),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "30s",
		},
	}
}

// Register announces the instance at startup.
func (c *ConsulClient) Register(cfg ServiceConfig) error {
	registration := Registration(cfg)

	err := c.client.Agent().ServiceRegister(registration)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	log.Printf("✅ Registered service: %s (ID: %s) at %s:%d", cfg.Name, cfg.ID, registration.Address, cfg.Port)
	return nil
}

// Deregister is deferred by main so a clean shutdown leaves no critical
// entry behind.
func (c *ConsulClient) Deregister(serviceID string) error {
	err := c.client.Agent().ServiceDeregister(serviceID)
	if err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}

	log.Printf("✅ Deregistered service: %s", serviceID)
	return nil
}

// GetService returns the first instance whose health check passes.
func (c *ConsulClient) GetService(serviceName string) (string, int, error) {
	services, _, err := c.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get service: %w", err)
	}

	if len(services) == 0 {
		return "", 0, fmt.Errorf("no healthy instances of %s found", serviceName)
	}

	service := services[0].Service
	address := service.Address
	if address == "" {
		address = "localhost"
	}

	return address, service.Port, nil
}

// GetServiceURL is GetService as an http base URL for the gateway proxy.
func (c *ConsulClient) GetServiceURL(serviceName string) (string, error) {
	address, port, err := c.GetService(serviceName)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("http://%s:%d", address, port), nil
}
