// Package network brings the node's WiFi link and wall clock up and down.
//
// Bootstrap is the state holder. It owns a Radio and a ClockSource and
// exposes the three steps the node needs before it can talk to the broker:
//
//	Associate   join the provisioned network, report its channel
//	SyncClock   wait until network time has moved the clock past the epoch sentinel
//	Teardown    power the radios down before deep sleep
//
// Both waits are bounded and measured on a Ticker, never on the clock
// being synchronised.
//
// Drivers:
//   - NMCLIRadio: NetworkManager through nmcli, optional rfkill for Bluetooth
//   - NTPClock: SNTP through github.com/beevik/ntp
//
// # Usage
//
//	b := network.New(network.Options{
//	    Radio: network.NewNMCLIRadio(network.NMCLIConfig{Interface: "wlan0"}),
//	    Clock: network.NewNTPClock(network.NTPClockConfig{Servers: []string{"pool.ntp.org"}}),
//	})
//	ch, err := b.Associate(creds.NetworkSSID, creds.NetworkPassword, network.DefaultAssociateTimeout)
package network
