package pagination

// DefaultPerPage is the page size requested when pagination is active and
// no explicit size was configured. It is also GitHub's maximum.
const DefaultPerPage = 100

// Mode is how a paginated call is carried out.
type Mode string

const (
	// ModeAuto drains every page and merges them into one result.
	ModeAuto Mode = "auto"

	// ModeEnumerable hands the enumerator back to the caller unstarted.
	ModeEnumerable Mode = "enumerable"

	// ModeSingle fetches exactly one page.
	ModeSingle Mode = "single"
)

// Options holds per-call pagination settings.
type Options struct {
	// AutoPaginate drains all pages into one result.
	AutoPaginate bool

	// Paginate returns the enumerator for manual iteration.
	Paginate bool

	// MaxPages caps the number of pages yielded (0 = unbounded).
	MaxPages int

	// PerPage is the page size sent as per_page (0 = use defaults).
	PerPage int

	// IncludeResponse passes the response to Iterate callbacks.
	IncludeResponse bool
}

// Defaults holds client-wide pagination settings. They are read from an
// immutable client configuration and passed in explicitly.
type Defaults struct {
	AutoPaginate bool
	Paginate     bool
	PerPage      int
}

// Resolve picks the pagination mode. The first matching rule wins:
// per-call auto, per-call paginate, client-wide auto, client-wide
// paginate, otherwise single.
func Resolve(opts *Options, defaults Defaults) Mode {
	switch {
	case opts != nil && opts.AutoPaginate:
		return ModeAuto
	case opts != nil && opts.Paginate:
		return ModeEnumerable
	case defaults.AutoPaginate:
		return ModeAuto
	case defaults.Paginate:
		return ModeEnumerable
	default:
		return ModeSingle
	}
}

// PerPage returns the page size to request, or 0 when none should be sent.
// An explicit per-call size wins over the client default; otherwise
// DefaultPerPage applies whenever more than one page may be fetched.
func PerPage(opts *Options, defaults Defaults, mode Mode) int {
	if opts != nil && opts.PerPage > 0 {
		return opts.PerPage
	}
	if defaults.PerPage > 0 {
		return defaults.PerPage
	}
	if mode == ModeAuto || mode == ModeEnumerable {
		return DefaultPerPage
	}
	return 0
}

// EnumeratorOptions returns the options an enumerator should be built with
// for the given mode. Single mode is forced to one page.
func EnumeratorOptions(opts *Options, mode Mode) Options {
	var out Options
	if opts != nil {
		out = *opts
	}
	if mode == ModeSingle {
		out.MaxPages = 1
	}
	return out
}
