// Package provision serves the credential form used while the device is in
// provisioning mode.
//
//	GET  /         HTML form with ssid and password fields
//	POST /connect  urlencoded form; stores the credentials
//
// The request body is read up to 128 bytes. The SSID is cut to 31 bytes and
// the password to 63. Stored credentials take effect after a restart.
package provision
