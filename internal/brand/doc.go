// Package brand implements dictionary-driven brand prediction.
//
// A Matcher is a pure function of (text, dictionary): the same input against
// the same dictionary version always yields the identical prediction, in the
// batch pipeline and in the online service alike.
package brand
