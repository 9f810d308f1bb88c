package schema

// CoreName is the name of the schema every record implicitly carries.
const CoreName = "core"

// Core attribute names.
const (
	AttrID                 = "id"
	AttrTitle              = "title"
	AttrMetadata           = "metadata"
	AttrContentType        = "metadata-content-type"
	AttrContentTypeVersion = "metadata-content-type-version"
	AttrLocation           = "location"
	AttrThumbnail          = "thumbnail"
	AttrCreated            = "created"
	AttrModified           = "modified"
	AttrEffective          = "effective"
	AttrExpiration         = "expiration"
	AttrSecurity           = "security"
	AttrTags               = "metacard-tags"
	AttrResourceURI        = "resource-uri"
	AttrResourceSize       = "resource-size"
)

// Pseudo attributes understood by the query translator.
const (
	// AnyText addresses the aggregate text field spanning every text-bearing attribute.
	AnyText = "anyText"
	// AnyGeo addresses every geometry attribute at once.
	AnyGeo = "anyGeo"
)

// Core returns the schema of attributes every record has.
func Core() Schema {
	s, err := New(CoreName, []Descriptor{
		{Name: AttrTitle, Type: String, Indexed: true, Stored: true, Tokenized: true},
		{Name: AttrMetadata, Type: XML, Indexed: true, Stored: true, Tokenized: true},
		{Name: AttrContentType, Type: String, Indexed: true, Stored: true, Tokenized: true},
		{Name: AttrContentTypeVersion, Type: String, Indexed: true, Stored: true},
		{Name: AttrLocation, Type: Geometry, Indexed: true, Stored: true},
		{Name: AttrThumbnail, Type: Binary, Stored: true},
		{Name: AttrCreated, Type: Date, Indexed: true, Stored: true},
		{Name: AttrModified, Type: Date, Indexed: true, Stored: true},
		{Name: AttrEffective, Type: Date, Indexed: true, Stored: true},
		{Name: AttrExpiration, Type: Date, Indexed: true, Stored: true},
		{Name: AttrSecurity, Type: Object, Stored: true},
		{Name: AttrTags, Type: String, Indexed: true, Stored: true, Multivalued: true},
		{Name: AttrResourceURI, Type: String, Indexed: true, Stored: true},
		{Name: AttrResourceSize, Type: String, Indexed: true, Stored: true},
	})
	if err != nil {
		panic(err)
	}
	return s
}

// TimestampAttributes are the core dates stamped at create time.
var TimestampAttributes = []string{AttrCreated, AttrModified, AttrEffective, AttrExpiration}
