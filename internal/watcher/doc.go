// Package watcher reports changes to indexable files under the data
// directory. fsnotify events are debounced and coalesced per path; when
// fsnotify is unavailable the watcher falls back to periodic ticks that ask
// for a full re-scan.
package watcher
