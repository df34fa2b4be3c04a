/*
Command bio-readsurvey aligns a collection of sequencing read files and
summarizes read quality by SAM flag and read length.

Each read file named in a manifest is downloaded (or streamed), decompressed,
piped through an aligner such as bowtie2, and the aligner's SAM output is
saved and stratified. Statistics are written per input under
<out>/<group>/<name>/ and for the whole run under <out>/.

Sample usage:

    bio-readsurvey manifest sequence.index 1KG_P2_NA12878_GAII \
        ftp://ftp-trace.ncbi.nih.gov/1000genomes/ftp/ \
        'SAMPLE_NAME=NA12878,INSTRUMENT_PLATFORM=ILLUMINA' > na12878.manifest

    bio-readsurvey run -workers 4 -out out na12878.manifest \
        bowtie2 -x hg19 -p 7 --sample 0.01

    bio-readsurvey stats out/1KG_P2_NA12878_GAII/SRR001/all.sam restats/
*/
package main
