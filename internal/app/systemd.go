package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	logx "redditcord/pkg/logx"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
)

// notifySystemd reports a lifecycle state to the service manager. Outside a
// systemd unit (no NOTIFY_SOCKET) it is a no-op.
func notifySystemd(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		log.Warn("systemd notify failed", logx.String("state", state), logx.Err(err))
	case sent:
		log.Debug("systemd notified", logx.String("state", state))
	}
}
