// Package smtp implements the SMTP authentication prober: a per-connection
// state machine that connects, negotiates capabilities, optionally upgrades
// to TLS via STARTTLS, authenticates one credential pair, and classifies
// the server's verdict - plus an orchestrator that drives many such
// attempts concurrently over a username x password space.
//
// The prober talks to the network only through ports.ByteStream, so tests
// script entire server conversations without opening sockets.
package smtp
