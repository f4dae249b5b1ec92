// Package credentials persists the station SSID/password pair.
//
// Credentials live in the "wifi_config" namespace of a key-value store under
// the keys "ssid" and "password". Loading never fails because a key is
// missing: an empty SSID simply means the device is unconfigured and the
// connectivity manager falls back to provisioning.
package credentials
