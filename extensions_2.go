package dieselsss

//Extensions are the names negotiated for instance, device or layer creation
type Extensions interface {
	HasRequired() (bool, []string)
	HasWanted() (bool, []string)
	GetExtensions() []string
}

//BaseExtensions matches what the application wants and requires against what the
//platform actually reports. Wanted names the platform lacks are dropped,
//required names are always requested so creation fails loudly.
type BaseExtensions struct {
	wanted   []string
	required []string
	actual   []string
}

func NewBaseExtensions(wanted []string, required []string, actual []string) *BaseExtensions {
	var base BaseExtensions
	base.wanted = wanted
	base.required = required
	base.actual = actual
	return &base
}

//----------------Instance Extensions--------------------//

func NewBaseInstanceExtensions(wanted []string, required []string) (*BaseExtensions, error) {
	actual, err := InstanceExtensions()
	if err != nil {
		return nil, err
	}
	return NewBaseExtensions(wanted, required, actual), nil
}

//----------------Device Extensions--------------------//

func NewBaseDeviceExtensions(wanted []string, required []string, gpu_extensions []string) *BaseExtensions {
	return NewBaseExtensions(wanted, required, gpu_extensions)
}

//----------------Layer Extensions--------------------//

//Layers are never required, a missing validation layer only loses diagnostics
func NewBaseLayerExtensions(wanted []string) (*BaseExtensions, error) {
	actual, err := ValidationLayers()
	if err != nil {
		return nil, err
	}
	return NewBaseExtensions(wanted, nil, actual), nil
}

func (e *BaseExtensions) missing(names []string) []string {
	missing := []string{}
	for _, req := range names {
		if !contains(e.actual, req) {
			missing = append(missing, req)
		}
	}
	return missing
}

func (e *BaseExtensions) HasRequired() (bool, []string) {
	missing := e.missing(e.required)
	return len(missing) == 0, missing
}

func (e *BaseExtensions) HasWanted() (bool, []string) {
	missing := e.missing(e.wanted)
	return len(missing) == 0, missing
}

//Required names first, then the wanted names the platform supports, without duplicates
func (e *BaseExtensions) GetExtensions() []string {
	implement := []string{}

	for _, req := range e.required {
		if !contains(implement, req) {
			implement = append(implement, req)
		}
	}

	for _, want := range e.wanted {
		if contains(implement, want) || !contains(e.actual, want) {
			continue
		}
		implement = append(implement, want)
	}

	return implement
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
