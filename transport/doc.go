// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package transport carries council messages over WebSocket connections.
//
// Each connection gets an opaque ID. Inbound frames are decoded and handed
// to a Dispatcher; outbound events are encoded once and queued per client.
package transport
