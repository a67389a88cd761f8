// Package probe inspects media files with a single ffprobe JSON call and
// converts the wire output into typed results.
//
// Only the fields the skip policy and the run summary need are kept: the
// container format (duration, size, bitrate) and the primary video stream
// (codec, dimensions, bitrate).
package probe
