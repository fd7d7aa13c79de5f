package document

import "fmt"

// Theme holds the colors and fonts baked into the embedded stylesheet.
type Theme struct {
	HeaderColor     string
	AccentColor     string
	BackgroundColor string
	TextColor       string
	MutedColor      string
	BorderColor     string
	MaxWidth        string
	FontFamily      string
	HeadingFont     string
}

// DefaultTheme returns the REACH house style.
func DefaultTheme() Theme {
	return Theme{
		HeaderColor:     "#b45309", // Amber-700
		AccentColor:     "#d97706", // Amber-600
		BackgroundColor: "#fffbeb", // Amber-50
		TextColor:       "#1f2937", // Gray-800
		MutedColor:      "#6b7280", // Gray-500
		BorderColor:     "#fde68a", // Amber-200
		MaxWidth:        "720px",
		FontFamily:      "system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif",
		HeadingFont:     "Georgia, 'Times New Roman', serif",
	}
}

// CSS returns the <style> element for theme. Everything is embedded so the
// document never depends on an external stylesheet.
func (t Theme) CSS() string {
	return fmt.Sprintf(`<style type="text/css">
  @page {
    size: A4;
    margin: 14mm 12mm;
  }
  body {
    margin: 0;
    padding: 0;
    background-color: %s;
    font-family: %s;
    color: %s;
    line-height: 1.6;
    -webkit-print-color-adjust: exact;
    print-color-adjust: exact;
  }
  .container {
    max-width: %s;
    margin: 0 auto;
    background-color: #ffffff;
    border: 1px solid %s;
    border-radius: 8px;
    overflow: hidden;
  }
  .header {
    background-color: %s;
    color: #ffffff;
    padding: 28px 24px;
    text-align: center;
  }
  .header h1 {
    margin: 0;
    font-family: %s;
    font-size: 26px;
    font-weight: 600;
  }
  .header .org {
    margin: 6px 0 0 0;
    font-size: 14px;
    opacity: 0.9;
  }
  .content {
    padding: 24px;
  }
  .category-block {
    margin: 0 0 28px 0;
    page-break-inside: avoid;
  }
  .category-title {
    font-family: %s;
    color: %s;
    font-size: 20px;
    margin: 0 0 14px 0;
    border-bottom: 2px solid %s;
    padding-bottom: 6px;
  }
  .section {
    margin: 0 0 18px 0;
  }
  .section-title {
    font-size: 17px;
    margin: 0 0 8px 0;
  }
  .section-body p {
    margin: 0 0 12px 0;
    font-size: 15px;
  }
  .section-images img {
    display: block;
    max-width: 100%%;
    height: auto;
    margin: 10px auto;
    border-radius: 6px;
  }
  .footer {
    padding: 18px 24px;
    border-top: 1px solid %s;
    color: %s;
    font-size: 12px;
    text-align: center;
  }
</style>`,
		t.BackgroundColor, t.FontFamily, t.TextColor,
		t.MaxWidth, t.BorderColor,
		t.HeaderColor, t.HeadingFont,
		t.HeadingFont, t.AccentColor, t.BorderColor,
		t.BorderColor, t.MutedColor)
}
