// Package server provides the HTTP listener shared by the device's servers.
//
// Start binds synchronously: once it returns without error the listener is
// accepting connections. Close terminates every live connection, including
// MJPEG streams that would otherwise hold a graceful Shutdown open
// indefinitely.
//
// # Usage Example
//
//	srv, err := server.Start(server.Config{
//	    Name:    "control",
//	    Port:    80,
//	    Handler: server.LogRequests(mux),
//	})
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
package server
