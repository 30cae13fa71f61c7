package editor

// PickerBuilderOption configures a Picker created by NewPicker.
type PickerBuilderOption func(*picker)

// WithDragExtent sets the half size in world units of the plane DragPoint
// rasterizes. Cursor rays that miss the plane report no point.
//
// Parameters:
//   - extent: the half size, ignored when not positive
//
// Returns:
//   - PickerBuilderOption: a function that applies the extent option to a picker
func WithDragExtent(extent float32) PickerBuilderOption {
	return func(p *picker) {
		if extent > 0 {
			p.extent = extent
		}
	}
}

// WithLabel prefixes the labels of the targets the picker creates.
func WithLabel(label string) PickerBuilderOption {
	return func(p *picker) {
		if label != "" {
			p.label = label
		}
	}
}
