package gateway

import "time"

// Estados canônicos de conexão de uma instância.
const (
	StateOpen       = "open"
	StateConnecting = "connecting"
	StateClose      = "close"
)

// Ações aceitas por ContainerAction.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
)

type Deployment struct {
	ContainerName   string `json:"containerName"`
	HostPort        int    `json:"hostPort"`
	EvolutionAPIURL string `json:"evolutionApiUrl"`
	ManagerURL      string `json:"managerUrl"`
}

type Container struct {
	Name     string `json:"name"`
	ClientID string `json:"clientId,omitempty"`
	Status   string `json:"status"`
	HostPort int    `json:"hostPort,omitempty"`
}

type Health struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
}

type CreatedInstance struct {
	InstanceName  string     `json:"instanceName"`
	Status        string     `json:"status"`
	LastConnected *time.Time `json:"lastConnected,omitempty"`
}

type ConnectionState struct {
	InstanceName string `json:"instanceName"`
	State        string `json:"state"`
}

type InstanceInfo struct {
	InstanceName  string     `json:"instanceName"`
	Status        string     `json:"status"`
	Owner         string     `json:"owner,omitempty"`
	ProfileName   string     `json:"profileName,omitempty"`
	LastConnected *time.Time `json:"lastConnected,omitempty"`
}

type WebhookConfig struct {
	URL     string   `json:"url"`
	Events  []string `json:"events"`
	Enabled bool     `json:"enabled"`
}
