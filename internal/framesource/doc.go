// Package framesource defines the FrameSource collaborator and a client for
// remote frame servers.
//
// A frame server owns the camera and its encoder. The device binds to one
// server at a time and pulls encoded JPEG frames from it for every stream
// viewer, while forwarding configuration changes (frame pacing, camera
// quality, active source) on the viewer's behalf.
//
// # Wire Protocol
//
// Control calls are HTTP/JSON against the server's control port (5003 by
// default):
//
//	POST /stream/start        start pushing frames
//	POST /stream/stop         stop pushing frames
//	GET  /sources?max=N       ["camA","camB"]
//	POST /source              {"name":"camA"}
//	GET  /config/frame        {"fps":15,"frame_max_len":101400,...}
//	PUT  /config/frame
//	GET  /config/cam          {"cam_jpeg_quality":30,...}
//	PUT  /config/cam
//
// Frames are pushed as binary WebSocket messages on the data port (5004 by
// default, path /frames), one JPEG per message.
//
// # Buffering
//
// Pushed frames land in a bounded local buffer. When the buffer is full the
// oldest frame is discarded, so a slow viewer always sees recent frames.
// GetFrame hands a frame out and ReturnFrame takes it back; returning a frame
// twice is reported as a protocol error.
//
// # Thread Safety
//
// Client is safe for concurrent use by many stream handlers.
package framesource
