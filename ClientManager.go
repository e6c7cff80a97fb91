package modbus

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// ClientManager is a singleton that tracks clients for the entire program so
// that independent packages end up sharing one Client per bus. Clients are
// keyed on their Host field. Use GetClientManager() to get the singleton and
// SetupClient to obtain a ClientHandle for given ConnectionSettings.
type ClientManager struct {
	clients *xsync.MapOf[string, *client]
}

var clntMngr *ClientManager
var once sync.Once

// GetClientManager returns the singleton instance of ClientManager,
// initializing it if necessary.
func GetClientManager() *ClientManager {
	once.Do(func() {
		clntMngr = &ClientManager{
			clients: xsync.NewMapOf[string, *client](),
		}
	})
	return clntMngr
}

// SetupClient returns a ClientHandle for the client with the given
// ConnectionSettings, creating and starting the client if none exists for
// cs.Host. An existing client can only be requested if all settings match
// exactly; a Host in use with different settings is an error. The client
// shuts down once all of its handles are closed, and is then removed from the
// manager so a later SetupClient starts a fresh one.
func (cm *ClientManager) SetupClient(cs ConnectionSettings) (*ClientHandle, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	cl, _ := cm.clients.LoadOrCompute(cs.Host, func() *client {
		newCl := &client{ConnectionSettings: cs}
		newCl.onShutdown = func() { cm.clients.Delete(cs.Host) }
		return newCl
	})
	if cl.ConnectionSettings != cs {
		return nil, fmt.Errorf("Host '%s' is already in use with different "+
			"connection settings", cs.Host)
	}
	return cl.NewClientHandle()
}
