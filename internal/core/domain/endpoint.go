package domain

import "time"

type EndpointID string
type InterfaceName string

type Role string

const (
	RoleUserUnit  Role = "user-unit"
	RoleRelayNode Role = "relay-node"
	RoleServer    Role = "server"
)

// Endpoint is a participant in the radio topology: a body-worn unit, a
// relay node bridging two radio interfaces, or the central server.
type Endpoint struct {
	ID         EndpointID
	Role       Role
	Interfaces []InterfaceName
	Liveness   Liveness
	LastSeen   time.Time
}
