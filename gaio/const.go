//go:build linux
// +build linux

package gaio

// maxEvents bounds a single epoll_wait batch. It is well below the
// server's 65536-connection cap, so when more fds are ready than fit in
// one batch the rest are reported by later Wait calls.
const maxEvents = 1024
