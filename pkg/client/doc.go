// Package client is the guardian Go SDK.
//
// It wraps the guardian REST API: submitting tamper-evident violation chains,
// reading dashboards and statistics, generating narrative reports, and
// managing screen-time policies.
//
// # Connecting
//
//	c := client.New("http://localhost:8080")
//
// # Syncing a chain
//
// The device submits its full chain on every sync; the server verifies the
// hash links and proof of work before replacing its stored copy:
//
//	result, err := c.Sync(ctx, &client.SyncRequest{
//	    DeviceKey: deviceKey,
//	    Ledger: client.LedgerPayload{
//	        DeviceID: "pixel-7a",
//	        Blocks:   blocks,
//	    },
//	    ClientVersion: "2.1.0",
//	})
//
// # Reading monitoring data
//
//	dash, err := c.Dashboard(ctx, deviceKey)
//	stats, err := c.Stats(ctx, deviceKey)
//	check, err := c.Verify(ctx, deviceKey)
//
// # Sessions
//
// Reads work anonymously when the server allows it. To scope requests to a
// device key, create a session once; the token is attached to every
// subsequent call:
//
//	_, err := c.CreateSession(ctx, deviceKey)
//
// A token obtained elsewhere can be supplied up front with WithSessionToken.
package client
