package monitor

import "errors"

var errNoRemote = errors.New("no remote store configured")
