package geo

// Tile is a selectable basemap.
type Tile struct {
	Name        string `json:"nome"`
	URL         string `json:"url"`
	Attribution string `json:"atribuicao"`
}

// Tiles are the basemaps offered by the map pages, OpenStreetMap first.
var Tiles = []Tile{ //nolint:gochecknoglobals // basemap catalogue
	{
		Name:        "OpenStreetMap",
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a>`,
	},
	{
		Name:        "Stamen Terrain",
		URL:         "https://stamen-tiles.a.ssl.fastly.net/terrain/{z}/{x}/{y}.png",
		Attribution: `Map tiles by <a href="http://stamen.com">Stamen Design</a>`,
	},
	{
		Name:        "Stamen Toner",
		URL:         "https://stamen-tiles-a.a.ssl.fastly.net/toner/{z}/{x}/{y}.png",
		Attribution: `Map tiles by <a href="http://stamen.com">Stamen Design</a>`,
	},
	{
		Name:        "CartoDB positron",
		URL:         "https://cartodb-basemaps-a.global.ssl.fastly.net/light_all/{z}/{x}/{y}.png",
		Attribution: `&copy; <a href="https://carto.com/attributions">CARTO</a>`,
	},
	{
		Name:        "CartoDB dark_matter",
		URL:         "https://cartodb-basemaps-a.global.ssl.fastly.net/dark_all/{z}/{x}/{y}.png",
		Attribution: `&copy; <a href="https://carto.com/attributions">CARTO</a>`,
	},
	{
		Name:        "Esri Satellite",
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri — Source: Esri",
	},
}
