// Package scoring ranks repositories by how well they handle their issues.
//
// Compute is a pure function over a repository's issues. It blends four
// components with fixed weights: resolved ratio (40%), speed of resolution
// (30%), engagement (20%) and clarity of the analysis text (10%). Every
// denominator is floored at 1, so a repository without issues scores 0.3
// from the resolution term alone.
//
// Rank orders results by descending score and keeps ties in input order.
package scoring
