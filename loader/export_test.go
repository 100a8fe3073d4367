package loader

// Bind exposes symbol binding to tests; plugins cannot be built inside a
// unit test.
var Bind = bind
