package systemd

import (
	"fmt"
	"net"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Socket names expected in cortes.socket (FileDescriptorName=).
const (
	SocketHTTP    = "http"
	SocketMetrics = "metrics"
)

// Listeners holds the systemd-activated listeners.
type Listeners struct {
	HTTP      net.Listener
	Metrics   net.Listener
	Activated bool
}

// GetListeners retrieves socket-activated listeners by name. When the
// process was not started through socket activation the returned
// listeners are nil and Activated is false.
func GetListeners() (*Listeners, error) {
	listeners := &Listeners{}

	if len(activation.Files(false)) == 0 {
		return listeners, nil
	}
	listeners.Activated = true

	named, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("failed to get systemd listeners: %w", err)
	}

	listeners.HTTP = first(named, SocketHTTP)
	listeners.Metrics = first(named, SocketMetrics)

	return listeners, nil
}

func first(named map[string][]net.Listener, name string) net.Listener {
	if lns, ok := named[name]; ok && len(lns) > 0 {
		return lns[0]
	}
	return nil
}

// NotifyReady sends READY=1 to systemd. It is a no-op outside systemd.
func NotifyReady() error {
	return notify(daemon.SdNotifyReady)
}

// NotifyStopping sends STOPPING=1 to systemd.
func NotifyStopping() error {
	return notify(daemon.SdNotifyStopping)
}

// NotifyStatus sends a free-form STATUS= line shown by systemctl status.
func NotifyStatus(status string) error {
	return notify("STATUS=" + status)
}

func notify(state string) error {
	if _, err := daemon.SdNotify(false, state); err != nil {
		return fmt.Errorf("failed to send sd_notify %q: %w", state, err)
	}
	return nil
}
