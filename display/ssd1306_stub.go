//go:build !pi

package display

import "errors"

type SSD1306 struct {
	*Canvas
}

func OpenSSD1306(string, *Canvas) (*SSD1306, error) {
	return nil, errors.New("the ssd1306 display needs a build with the pi tag")
}

func (*SSD1306) SetContrast(byte) error {
	return nil
}

func (*SSD1306) Close() error {
	return nil
}
