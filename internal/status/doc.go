// Package status reports the daemon's processing state to dashboards.
//
// A Reporter reads a Snapshot (pending count plus whether a drain is running)
// and never mutates anything. A Broadcaster polls the reporter on an interval
// and fans snapshots out to subscribers; Publish pushes an extra snapshot on
// demand, which the scheduler does after each drain.
package status
