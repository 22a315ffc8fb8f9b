package testing

// WorldGeoJSON is a tiny boundary file with three valid countries and one feature without an ISO-2 code.
const WorldGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ADMIN": "United States of America", "ISO_A2": "US"},
     "geometry": {"type": "Polygon", "coordinates": [[[-125, 25], [-66, 25], [-66, 49], [-125, 49], [-125, 25]]]}},
    {"type": "Feature", "properties": {"ADMIN": "United Kingdom", "ISO_A2": "gb "},
     "geometry": {"type": "Polygon", "coordinates": [[[-8, 50], [2, 50], [2, 59], [-8, 59], [-8, 50]]]}},
    {"type": "Feature", "properties": {"ADMIN": "France", "ISO_A2": "FR"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-5, 42], [8, 42], [8, 51], [-5, 51], [-5, 42]]]]}},
    {"type": "Feature", "properties": {"ADMIN": "Northern Cyprus", "ISO_A2": "-99"},
     "geometry": {"type": "Polygon", "coordinates": [[[32, 35], [34, 35], [34, 36], [32, 36], [32, 35]]]}}
  ]
}`
