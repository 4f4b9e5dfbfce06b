// Package config loads the runtime configuration. Files are written in HCL
// (the primary format) or TOML; a directory is scanned for both and every
// file is applied on top of the defaults in path order.
//
// An HCL file looks like:
//
//	runtime {
//	  workers     = 8
//	  queue_depth = 32
//	  perf        = true
//	}
//
//	target "khronos.c_model" {
//	  priority = 1
//	}
//
//	target "khronos.device" {
//	  priority  = 2
//	  transfers = 2
//	}
//
// Attributes of a target block other than priority and enabled are passed
// to the target module as options.
package config
