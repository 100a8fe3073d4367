package counters

var EnableAll = enableAll
