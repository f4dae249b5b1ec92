// Package gateway serves the MJPEG stream and the control endpoints backed by
// a remote frame source.
//
// # Control Endpoints
//
//	/start_stream /stop_stream      forward to the frame source
//	/get_sources                    JSON array of up to 5 names (1 s bound)
//	/set_source?name=               select a camera (name up to 30 bytes)
//	/set_frame?fps=&frame_max_len=&buffered_fbs=&fb_in_buffer_before_get=
//	/set_cam?cam_jpeg_quality=&cam_frame_size=&cam_pixel_format=
//	/get_config_frame /get_config_cam   JSON (2 s bound)
//	/set_server?name=               bind (empty name resolves espfsp_server)
//	/clear_server                   unbind
//	/index /status /metrics
//
// Everything except /set_server, /index, /status and /metrics needs a bound
// frame source and answers 403 without one. A failed query answers 200 with
// an empty body. fps, frame_max_len, buffered_fbs and cam_jpeg_quality never
// reach the frame source as anything below 1.
//
// # Stream
//
// GET /stream on the stream listener answers
// multipart/x-mixed-replace; boundary=frame, one image/jpeg part per frame.
// Each frame is waited for with a bound; more than FailureThreshold
// consecutive misses end the stream. Every acquired frame is returned to the
// source exactly once, whether or not its write succeeded.
package gateway
