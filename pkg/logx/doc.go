// Package logx is remindd's structured logger, a thin layer over zerolog.
//
// Console output is human-readable with a short file:line caller; the log
// file gets one JSON object per line. A Service rebuilds both sinks on
// config reload and every Logger derived from it follows along.
package logx
