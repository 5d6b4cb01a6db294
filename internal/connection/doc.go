// Package connection maintains the live WebSocket session to a room's chat
// feed.
//
// Two layers:
//   - client: one socket epoch — login handshake, 30s heartbeats, read loop
//   - Supervisor: drives clients across reconnects with exponential backoff
//     (10s base, doubling, 300s cap) and a 30-minute stability reset
//
// Decoded events flow out on a single bounded channel that stays open across
// reconnects; lifecycle transitions go to a separate lossy status channel.
package connection
