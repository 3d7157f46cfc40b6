package model

import "time"

type IntegrationType string

const IntegrationTypeEvolutionAPI IntegrationType = "EVOLUTION_API"

type ContainerStatus string

const (
	ContainerStatusRunning ContainerStatus = "RUNNING"
	ContainerStatusStopped ContainerStatus = "STOPPED"
	ContainerStatusError   ContainerStatus = "ERROR"
	ContainerStatusUnknown ContainerStatus = "UNKNOWN"
)

type InstanceStatus string

const (
	InstanceStatusDisconnected InstanceStatus = "DISCONNECTED"
	InstanceStatusConnecting   InstanceStatus = "CONNECTING"
	InstanceStatusConnected    InstanceStatus = "CONNECTED"
	InstanceStatusError        InstanceStatus = "ERROR"
	InstanceStatusMaintenance  InstanceStatus = "MAINTENANCE"
)

// Client é o tenant. Não pertence ao core: só é lido para validar a existência.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// GlobalIntegration é a entrada de catálogo de um tipo de integração.
type GlobalIntegration struct {
	ID          string          `json:"id"`
	Type        IntegrationType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BackendURL  string          `json:"backendUrl"`
	APIKey      string          `json:"-"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ClientIntegration struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"clientId"`
	Type        IntegrationType `json:"type"`
	IsActive    bool            `json:"isActive"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Config      map[string]any  `json:"config,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`

	Evolution *EvolutionIntegration `json:"evolution,omitempty"`
}

type EvolutionIntegration struct {
	ID                  string          `json:"id"`
	ClientIntegrationID string          `json:"clientIntegrationId"`
	ContainerName       string          `json:"containerName"`
	HostPort            int             `json:"hostPort"`
	EvolutionAPIURL     string          `json:"evolutionApiUrl"`
	ManagerURL          string          `json:"managerUrl"`
	ContainerStatus     ContainerStatus `json:"containerStatus"`
	LastDeployedAt      *time.Time      `json:"lastDeployedAt,omitempty"`
	LastHealthCheck     *time.Time      `json:"lastHealthCheck,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

type EvolutionInstance struct {
	ID                     string         `json:"id"`
	EvolutionIntegrationID string         `json:"evolutionApiId"`
	InstanceName           string         `json:"instanceName"`
	PhoneNumber            string         `json:"phoneNumber,omitempty"`
	Status                 InstanceStatus `json:"status"`
	LastConnected          *time.Time     `json:"lastConnected,omitempty"`
	LastMessageAt          *time.Time     `json:"lastMessageAt,omitempty"`
	CreatedAt              time.Time      `json:"createdAt"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}
