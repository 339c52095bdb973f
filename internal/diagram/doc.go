// Package diagram turns packed pies into pie-chart geometry.
//
// Angles follow the mathematical convention: 0 points along the positive x
// axis and angles grow towards positive y. Callers that draw in a y-down
// coordinate system (such as SVG) see wedges laid out clockwise.
package diagram
