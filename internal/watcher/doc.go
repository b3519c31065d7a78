// Package watcher detects files that have finished arriving in the drop
// directory.
//
// It polls instead of subscribing to kernel notifications because the drop
// directory is usually an SMB or NFS mount, where inotify sees no remote
// writes. A file is reported once its size and modification time have held
// for the configured stability window. Retry re-arms a reported file when its
// consumer could not handle it.
package watcher
