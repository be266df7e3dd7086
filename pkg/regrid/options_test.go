package regrid

import "testing"

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Options)
		wantErr bool
	}{
		{"defaults", func(*Options) {}, false},
		{"fixed height", func(o *Options) { o.PreserveFloor = false }, false},
		{"outline crop", func(o *Options) { o.Crop = CropOutline }, false},
		{"explicit modules", func(o *Options) { o.Modules = Modules{5, 5} }, false},
		{"zero pitch", func(o *Options) { o.PitchDst = 0 }, true},
		{"negative replace height", func(o *Options) { o.ReplaceHeight = -1 }, true},
		{"zero epsilon", func(o *Options) { o.FloorEpsilon = 0 }, true},
		{"overlap equals epsilon", func(o *Options) { o.Overlap = o.FloorEpsilon }, true},
		{"zero overlap", func(o *Options) { o.Overlap = 0 }, true},
		{"unknown crop", func(o *Options) { o.Crop = "hull" }, true},
		{"odd rotation", func(o *Options) { o.Rotate = 45 }, true},
		{"odd tile rotation", func(o *Options) { o.TileRotate = 30 }, true},
		{"half modules", func(o *Options) { o.Modules = Modules{N: 2} }, true},
		{"bad floor config", func(o *Options) { o.Floor.Step = 0 }, true},
		{"bad floor config ignored", func(o *Options) { o.Floor.Step = 0; o.PreserveFloor = false }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.modify(&o)
			err := o.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRefHeightDefault(t *testing.T) {
	o := DefaultOptions()
	if got := o.refHeight(); got != o.ReplaceHeight {
		t.Errorf("refHeight() = %v, want the replace height %v", got, o.ReplaceHeight)
	}
	o.RefHeight = 4.5
	if got := o.refHeight(); got != 4.5 {
		t.Errorf("refHeight() = %v, want 4.5", got)
	}
}
