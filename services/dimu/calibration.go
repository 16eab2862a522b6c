package dimu

import (
	"dimu-go/services/dimu/internal/calib"
	"dimu-go/services/dimu/internal/params"
	"dimu-go/x/notice"
)

// LoadCalibration reads a stored calibration image into a fresh table.
func LoadCalibration(s Store, log notice.Logger) (map[string]float32, error) {
	tbl := params.NewTable()
	c := calib.New(calib.Config{}, tbl, calib.Options{Store: s, Logger: log})
	if err := c.Load(); err != nil {
		return nil, err
	}
	return tbl.Snapshot(), nil
}

// ParamNames lists calibration parameter names in storage order.
func ParamNames() []string {
	ids := params.Order()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Name()
	}
	return out
}
