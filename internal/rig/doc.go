// Package rig groups the cross-sensor correspondence model for a multi-camera
// rig.
//
// Layering, leaves first:
//
//	cells      image coordinate -> grid cell, sensor pair -> table index
//	stats      linear/circular statistics, histograms, RANSAC
//	match      correspondence sets and displacement estimates (consumed interface)
//	samples    raw per-cell sample accumulation for one training epoch
//	synth      synthetic correspondence traffic for tests and demos
//	dense      array-backed statistic tables, gap fill, binary persistence
//	sparse     hash-backed vote tables, per-mille normalisation
//	classifier facade: training, finalize, query, filter
//	store      SQLite snapshot persistence
//	report     PNG/HTML heatmaps of a table
//
// Dependency rule: a package may import only the packages listed above it.
// synth imports only cells, stats and match. store and report sit beside
// classifier and may import it.
package rig
