// Package domain models wind resource selection and analysis results.
//
// # Region Selection
//
// A user selects a region by dragging a rectangle on a map, or by clicking a
// single point. [Selector.Reduce] is a pure transition function over
// [SelectionState]: callers feed pointer and touch events in and render the
// state that comes back. Mouse and touch gestures are tracked in separate
// engagement slots.
//
// Every committed [Region] is min/max normalized and at least MinExtent
// degrees on each axis. Narrower axes are widened symmetrically about their
// center, so a click at (8.01, -75.99) with MinExtent 0.02 commits
// (8.00, -76.00)-(8.02, -75.98).
//
// # Analysis Payloads
//
// The external analysis service has shipped two key-naming generations:
//
//	legacy: basic_statistics, weibull_analysis, turbulence_analysis,
//	        wind_rose_data, wind_speed_distribution, monthly_analysis
//	nested: basicStatistics, weibullParameters, turbulence,
//	        windRose, speedDistribution, monthlyPatterns
//
// [Normalize] detects the generation once and builds a [NormalizedAnalysis]
// whose sections are always present. Statistic fields exist under a generic
// key ("mean", "k", "c") and a height-qualified key ("mean_wind_speed_10m",
// "k_10m", "c_100m"); the height-qualified key always wins.
//
// Numbers are coerced by [CoerceNumber], which reports why a value fell back
// to its default (missing, not numeric, not finite). Accessors never panic on
// malformed input.
//
// # Units
//
// Stored speeds are meters per second. [ConvertSpeed] is applied exactly once,
// when a typed view or chart series is derived for a requested unit:
//
//	ms  identity
//	kmh x 3.6
//
// Frequencies, probabilities, turbulence intensity, Weibull k, and power
// density are never converted.
//
// # Weather Series
//
// Weather retrieval returns per-height speed arrays that may be gridded
// ([[...], [...]] per time step) or wrapped ([[5, 6, 7]]).
// [CollapseSeries] reduces either form to one value per timestamp.
package domain
