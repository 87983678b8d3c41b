// Package vision converts a raster image into a structured, confidence
// scored RoomAnalysis.
//
// The pipeline is a chain of pure stages:
//
//	normalize -> edges (Sobel) -> line extraction -> shape classification
//	-> room inference -> lighting/condition -> confidence aggregation
//
// Run is a pure function of the pixels and Params. Analyzer wraps it with
// timing, logging and an LRU cache so repeated analyses of the same image are
// byte-identical. Decoding failures and empty detections never surface as
// errors: the result is a low-confidence fallback analysis instead.
package vision
