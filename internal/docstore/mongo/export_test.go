package mongo

var (
	FromJSON = fromJSON
	ToJSON   = toJSON
)
