package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGEXF = `<?xml version="1.0" encoding="UTF-8"?>
<gexf xmlns="http://www.gexf.net/1.2draft" version="1.2">
  <graph mode="static" defaultedgetype="directed">
    <attributes class="node">
      <attribute id="0" title="email" type="string"/>
      <attribute id="1" title="jobtitle" type="string">
        <default>Unknown</default>
      </attribute>
      <attribute id="2" title="messages" type="integer"/>
    </attributes>
    <attributes class="edge">
      <attribute id="d" title="date" type="string"/>
      <attribute id="s" title="sentiment" type="double"/>
    </attributes>
    <nodes>
      <node id="n0" label="Alice">
        <attvalues>
          <attvalue for="0" value="a@x.com"/>
          <attvalue for="1" value="Manager"/>
          <attvalue for="2" value="12"/>
        </attvalues>
      </node>
      <node id="n1" label="Bob">
        <attvalues>
          <attvalue for="0" value="b@x.com"/>
        </attvalues>
      </node>
    </nodes>
    <edges>
      <edge id="0" source="n0" target="n1" weight="2">
        <attvalues>
          <attvalue for="d" value="2021-01-01"/>
          <attvalue for="s" value="0.25"/>
        </attvalues>
      </edge>
      <edge id="1" source="n0" target="n1">
        <attvalues>
          <attvalue for="d" value="2021-01-05"/>
        </attvalues>
      </edge>
      <edge id="2" source="n1" target="n2"/>
    </edges>
  </graph>
</gexf>`

func TestParseGEXF(t *testing.T) {
	g, stats, err := ParseWithStats([]byte(sampleGEXF), "sample.gexf")
	require.NoError(t, err)
	assert.Equal(t, "gexf", stats.Format)

	// n2 is only referenced by an edge and gets upserted
	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())

	email, _ := g.NodeAttribute("n0", AttrEmail)
	assert.Equal(t, "a@x.com", email)
	label, _ := g.NodeAttribute("n0", AttrLabel)
	assert.Equal(t, "Alice", label)
	messages, _ := g.NodeAttribute("n0", "messages")
	assert.Equal(t, int64(12), messages)

	job, _ := g.NodeAttribute("n1", AttrJobTitle)
	assert.Equal(t, "Unknown", job, "declared default applies")

	edges := g.EdgesBetween("n0", "n1")
	require.Len(t, edges, 2)
	assert.Equal(t, "2021-01-01", g.EdgeString(edges[0], AttrDate))
	sentiment, _ := g.EdgeAttribute(edges[0], AttrSentiment)
	assert.Equal(t, 0.25, sentiment)
	weight, _ := g.EdgeAttribute(edges[0], AttrWeight)
	assert.Equal(t, 2.0, weight)
}

func TestParseGEXF_EdgeWithoutSource(t *testing.T) {
	doc := `<gexf><graph><nodes><node id="a"/></nodes><edges><edge target="a"/></edges></graph></gexf>`

	_, err := Parse([]byte(doc), "bad.gexf")
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "without source")
}

func TestParseGEXF_NodeWithoutID(t *testing.T) {
	doc := `<gexf><graph><nodes><node label="x"/></nodes></graph></gexf>`

	_, err := Parse([]byte(doc), "bad.gexf")
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}
