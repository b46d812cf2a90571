// Command scout runs the brand analytics pipeline and its prediction API.
package main
